package db

import (
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/audit"
	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/conversation"
	"github.com/nexusdesk/nexus-core/internal/customer"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	return gdb
}

// Migrate keeps the schema in step with the models; the unique indexes it
// creates are load-bearing for dedup correctness, not just lookups.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&customer.Customer{},
		&customer.CustomerIdentity{},
		&conversation.Conversation{},
		&conversation.Message{},
		&agent.AgentProfile{},
		&agent.AgentPromptVersion{},
		&commerce.Order{},
		&commerce.PaymentIntent{},
		&commerce.Transaction{},
		&commerce.Ticket{},
		&commerce.FollowUpTask{},
		&audit.ToolCallLog{},
		&audit.AuditLog{},
		&channel.WebhookEvent{},
	)
}
