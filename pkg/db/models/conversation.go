package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the buyer/seller thread seeded on order creation.
type Conversation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_conversations_order_id"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Messages  []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Message is a single thread entry; a nil sender marks a system message.
type Message struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID  `gorm:"column:conversation_id;type:uuid;not null;index"`
	SenderID       *uuid.UUID `gorm:"column:sender_id;type:uuid"`
	Body           string     `gorm:"column:body;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
