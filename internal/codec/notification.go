package codec

import (
	"strings"

	"github.com/starford/quackstagram/internal/checksum"
	"github.com/starford/quackstagram/internal/models"
)

const kindNotification = "notification"

// EncodeNotification renders "receiver; sender; imageId; timestamp; TYPE".
// The ID is not stored; it is derived from the encoded line.
func EncodeNotification(n models.Notification) string {
	return strings.Join([]string{n.Receiver, n.Sender, n.ImageID, formatTime(n.Timestamp), string(n.Type)}, "; ")
}

// NotificationID derives the identifier of n from its encoded line.
// Two notifications with identical fields share an id.
func NotificationID(n models.Notification) string {
	n.ID = ""
	return checksum.Short(EncodeNotification(n))
}

// DecodeNotification parses a notifications.txt line. Lines without a type
// field are LIKE unless they carry no image id, in which case they are
// FOLLOW; an unknown type falls back to LIKE.
func DecodeNotification(line string) (models.Notification, error) {
	parts := strings.Split(line, ";")
	if len(parts) < 4 {
		return models.Notification{}, malformed(kindNotification, line, "fewer than 4 fields")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	n := models.Notification{Receiver: parts[0], Sender: parts[1], ImageID: parts[2]}
	if n.Receiver == "" || n.Sender == "" {
		return models.Notification{}, malformed(kindNotification, line, "empty receiver or sender")
	}
	ts, err := parseTime(parts[3])
	if err != nil {
		return models.Notification{}, malformed(kindNotification, line, "bad timestamp")
	}
	n.Timestamp = ts

	switch {
	case len(parts) >= 5:
		n.Type = models.NotificationType(parts[4])
		if !n.Type.Valid() {
			n.Type = models.NotificationLike
		}
	case n.ImageID == "":
		n.Type = models.NotificationFollow
	default:
		n.Type = models.NotificationLike
	}
	n.ID = NotificationID(n)
	return n, nil
}

// NotificationReceiver returns the receiver field of a line.
func NotificationReceiver(line string) string {
	head, _, _ := strings.Cut(line, ";")
	return strings.TrimSpace(head)
}
