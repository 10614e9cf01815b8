package discord

// Channel types we care about.
const (
	ChannelTypeGuildText = 0
)

// Interaction types.
const (
	InteractionTypePing             = 1
	InteractionTypeCommand          = 2
	InteractionTypeMessageComponent = 3
)

// Interaction callback types.
const (
	ResponseChannelMessage  = 4
	ResponseDeferredMessage = 5
	ResponseUpdateMessage   = 7
)

// Message flags.
const (
	FlagEphemeral = 1 << 6
)

// Permission bits carried in Member.Permissions.
const (
	PermissionManageGuild   = 0x20
	PermissionAdministrator = 0x8
)

// Button styles.
const (
	ButtonStylePrimary   = 1
	ButtonStyleSecondary = 2
	ButtonStyleSuccess   = 3
	ButtonStyleDanger    = 4
)

// Channel represents a guild channel.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	Name     string `json:"name,omitempty"`
	Position int    `json:"position,omitempty"`
}

// User represents a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Bot      bool   `json:"bot,omitempty"`
}

// Member represents a guild member attached to an interaction.
// Permissions is the member's computed permission bitset in the
// interaction's channel, serialized as a decimal string.
type Member struct {
	User        *User  `json:"user,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// Guild represents a guild as delivered by the gateway.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// Message represents a channel message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content,omitempty"`
}

// Component is a message component. Buttons live inside an action row.
type Component struct {
	Type       int         `json:"type"` // 1 action row, 2 button
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Disabled   bool        `json:"disabled,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// MessagePayload is the body for message create/edit calls.
type MessagePayload struct {
	Content    string      `json:"content,omitempty"`
	Components []Component `json:"components,omitempty"`
	Flags      int         `json:"flags,omitempty"`
}

// InteractionOption is a single slash-command argument.
type InteractionOption struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Value any    `json:"value,omitempty"`
}

// InteractionData carries the command name or the clicked component ID.
type InteractionData struct {
	Name     string              `json:"name,omitempty"`
	CustomID string              `json:"custom_id,omitempty"`
	Options  []InteractionOption `json:"options,omitempty"`
}

// Interaction is an INTERACTION_CREATE payload.
type Interaction struct {
	ID            string           `json:"id"`
	ApplicationID string           `json:"application_id"`
	Type          int              `json:"type"`
	Token         string           `json:"token"`
	GuildID       string           `json:"guild_id,omitempty"`
	ChannelID     string           `json:"channel_id,omitempty"`
	Member        *Member          `json:"member,omitempty"`
	User          *User            `json:"user,omitempty"`
	Data          *InteractionData `json:"data,omitempty"`
}

// UserID returns the acting user's ID regardless of guild or DM context.
func (i *Interaction) UserID() string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// StringOption returns the named string option, or "".
func (i *Interaction) StringOption(name string) string {
	if i.Data == nil {
		return ""
	}
	for _, opt := range i.Data.Options {
		if opt.Name == name {
			if s, ok := opt.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// BoolOption returns the named boolean option.
func (i *Interaction) BoolOption(name string) bool {
	if i.Data == nil {
		return false
	}
	for _, opt := range i.Data.Options {
		if opt.Name == name {
			if b, ok := opt.Value.(bool); ok {
				return b
			}
		}
	}
	return false
}

// InteractionResponse is the body for interaction callbacks.
type InteractionResponse struct {
	Type int             `json:"type"`
	Data *MessagePayload `json:"data,omitempty"`
}

// ApplicationCommandOption describes one slash-command parameter.
type ApplicationCommandOption struct {
	Type        int    `json:"type"` // 3 string, 5 boolean
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

// ApplicationCommand describes a slash command for registration.
type ApplicationCommand struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Options     []ApplicationCommandOption `json:"options,omitempty"`
}
