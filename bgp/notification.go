package bgp

// Notification is a decoded NOTIFICATION message, RFC 4271 §4.5.
type Notification struct {
	Code    byte
	Subcode byte
	Data    []byte
}

func MarshalNotification(n Notification) []byte {
	return append([]byte{n.Code, n.Subcode}, n.Data...)
}

func ParseNotification(b []byte) (Notification, error) {
	if len(b) < 2 {
		return Notification{}, Notify(ErrHeader, SubBadMessageLength, nil, "NOTIFICATION too short")
	}
	return Notification{Code: b[0], Subcode: b[1], Data: append([]byte{}, b[2:]...)}, nil
}

// FromNotifiable converts any Notifiable error into a wire Notification.
func FromNotifiable(e Notifiable) Notification {
	return Notification{Code: e.Code(), Subcode: e.Subcode(), Data: e.Data()}
}
