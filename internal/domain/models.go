// Package domain defines the persistence models for users, chats, chat
// memberships, messages and blocks. These types are mapped with GORM and form
// the core data layer of the geochat backend.
package domain

import (
	"time"
)

// GeneralChatToken identifies the single public room. Clients receive it on
// login and registration.
const GeneralChatToken = "CHAT_PUBLICO_GENERAL_TOKEN_FIJO_12345"

// Chat types as exposed on the wire.
const (
	ChatTypeGeneral = "general"
	ChatTypePrivate = "privado"
)

// Roles.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// User is a registered account.
//
// Fields:
//   - Email: unique login identifier, stored lower-cased.
//   - PasswordHash: bcrypt or argon2id encoded hash; never serialized.
//   - Roles: role names, persisted as a JSON array.
//   - Latitude / Longitude: last known position, nil until reported.
//   - LastSeenAt: last login, poll or profile update.
//   - UserToken: persistent per-account token used to address the user from
//     other accounts. It is distinct from the session bearer token.
type User struct {
	ID           uint       `json:"id"            gorm:"primaryKey"`
	Email        string     `json:"email"         gorm:"type:varchar(180);not null;uniqueIndex:ux_users_email"`
	Username     string     `json:"username"      gorm:"type:varchar(255);not null"`
	PasswordHash string     `json:"-"             gorm:"type:varchar(255);not null"`
	Roles        []string   `json:"roles"         gorm:"serializer:json;type:text;not null"`
	Latitude     *float64   `json:"latitud"`
	Longitude    *float64   `json:"longitud"`
	LastSeenAt   *time.Time `json:"ultima_conexion" gorm:"index:idx_users_presence,priority:2"`
	Online       bool       `json:"en_linea"      gorm:"not null;default:false;index:idx_users_presence,priority:1"`
	UserToken    string     `json:"user_token"    gorm:"type:varchar(64);not null;uniqueIndex:ux_users_token"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// HasLocation reports whether both coordinates are known.
func (u User) HasLocation() bool { return u.Latitude != nil && u.Longitude != nil }

// Chat is either the public room or a private, ephemeral conversation.
// Private chats are deleted once their last member leaves.
type Chat struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	Token     string    `json:"chat_token" gorm:"type:varchar(64);not null;uniqueIndex:ux_chats_token"`
	Type      string    `json:"tipo"       gorm:"type:varchar(16);not null;check:type IN ('general','privado')"`
	Ephemeral bool      `json:"temporal"   gorm:"not null;default:false"`
	CreatedAt time.Time `json:"fecha_creacion"`

	// PairKey is "<lowID>:<highID>" for a private chat opened between two
	// users and NULL otherwise. It is cleared once either of them leaves.
	PairKey *string `json:"-" gorm:"type:varchar(48);uniqueIndex:ux_chats_pair"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// IsGeneral reports whether c is the public room.
func (c Chat) IsGeneral() bool { return c.Type == ChatTypeGeneral }

// ChatMembership links a user to a chat. The earliest JoinedAt in a chat
// identifies its creator.
type ChatMembership struct {
	ID       uint      `json:"id"          gorm:"primaryKey"`
	ChatID   uint      `json:"chat_id"     gorm:"not null;uniqueIndex:ux_membership_chat_user,priority:1"`
	UserID   uint      `json:"usuario_id"  gorm:"not null;uniqueIndex:ux_membership_chat_user,priority:2;index:idx_membership_user"`
	JoinedAt time.Time `json:"fecha_union" gorm:"not null;index"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMembership.
func (ChatMembership) TableName() string { return "chat_memberships" }

// Message is a single chat entry. A nil UserID marks a system message or a
// message whose author has since been deleted.
type Message struct {
	ID     uint      `json:"mensaje_id" gorm:"primaryKey"`
	ChatID uint      `json:"chat_id"    gorm:"not null;index:idx_chat_msgs,priority:1"`
	UserID *uint     `json:"usuario_id" gorm:"index"`
	Body   string    `json:"contenido"  gorm:"type:text;not null"`
	SentAt time.Time `json:"fecha_envio" gorm:"not null;index:idx_chat_msgs,priority:2"`
	System bool      `json:"es_sistema" gorm:"not null;default:false"`

	Chat Chat  `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	User *User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Block is a directional relation: BlockerID no longer wants to hear from
// BlockedID. Unique per ordered pair.
type Block struct {
	ID        uint      `json:"bloqueo_id"   gorm:"primaryKey"`
	BlockerID uint      `json:"usuario_bloqueador_id" gorm:"not null;uniqueIndex:ux_blocks_pair,priority:1"`
	BlockedID uint      `json:"usuario_bloqueado_id"  gorm:"not null;uniqueIndex:ux_blocks_pair,priority:2;index"`
	BlockedAt time.Time `json:"fecha_bloqueo" gorm:"not null"`

	Blocker User `json:"-" gorm:"foreignKey:BlockerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Blocked User `json:"-" gorm:"foreignKey:BlockedID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Block.
func (Block) TableName() string { return "blocks" }
