package missive

// ChannelType identifies the category of a missive and of the channel
// operations a provider exposes for it.
type ChannelType string

const (
	ChannelEmail            ChannelType = "EMAIL"
	ChannelSMS              ChannelType = "SMS"
	ChannelPostal           ChannelType = "POSTAL"
	ChannelLRE              ChannelType = "LRE"
	ChannelRCS              ChannelType = "RCS"
	ChannelVoiceCall        ChannelType = "VOICE_CALL"
	ChannelNotification     ChannelType = "NOTIFICATION"
	ChannelPushNotification ChannelType = "PUSH_NOTIFICATION"
	ChannelBranded          ChannelType = "BRANDED"
)

// Channels lists every channel type in a stable order.
var Channels = []ChannelType{
	ChannelEmail,
	ChannelSMS,
	ChannelPostal,
	ChannelLRE,
	ChannelRCS,
	ChannelVoiceCall,
	ChannelNotification,
	ChannelPushNotification,
	ChannelBranded,
}

// String returns the canonical upper-case name of the channel.
func (c ChannelType) String() string {
	return string(c)
}

// Valid reports whether the channel is one of the known channel types.
func (c ChannelType) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}
