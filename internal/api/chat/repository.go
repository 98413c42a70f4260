package chat

import (
	"context"
	"time"

	"docqa/internal/database"
	"docqa/internal/database/model"

	"gorm.io/gorm"
)

// MessageLog keeps a transcript of every answered turn.
type MessageLog interface {
	SaveTurn(ctx context.Context, sessionID, question, answer string) error
}

// GormMessageLog writes both sides of a turn to the messages table in one transaction.
type GormMessageLog struct{}

func (GormMessageLog) SaveTurn(ctx context.Context, sessionID, question, answer string) error {
	now := time.Now()
	rows := []model.Message{
		{SessionID: sessionID, Role: model.RoleUser, Content: question, CreatedAt: &now},
		{SessionID: sessionID, Role: model.RoleAssistant, Content: answer, CreatedAt: &now},
	}
	return database.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}
