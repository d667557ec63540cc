package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/audit"
	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/config"
	"github.com/nexusdesk/nexus-core/internal/conversation"
	"github.com/nexusdesk/nexus-core/internal/customer"
	"github.com/nexusdesk/nexus-core/internal/db"
	"github.com/nexusdesk/nexus-core/internal/httpapi"
	"github.com/nexusdesk/nexus-core/internal/llm"
	"github.com/nexusdesk/nexus-core/internal/logx"
	"github.com/nexusdesk/nexus-core/internal/secrets"
	"github.com/nexusdesk/nexus-core/internal/store/rabbitmq"
	"github.com/nexusdesk/nexus-core/internal/store/redisstore"
	"github.com/nexusdesk/nexus-core/internal/toolgw"
)

func main() {
	cfg := config.Load()
	logx.Init(cfg.LogDebug, cfg.LogPretty)

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	sealer, err := secrets.NewSealer(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("bad encryption key")
	}

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publisher")
	}
	defer pub.Close()

	customerRepo := customer.NewRepo(gdb)
	customerSvc := customer.NewService(customerRepo, sealer)
	convRepo := conversation.NewRepo(gdb)
	agentRepo := agent.NewRepo(gdb)

	actions := commerce.NewActions(gdb, cfg.Tenant, convRepo)
	gateway := toolgw.NewGateway(gdb, actions, rds, cfg.Tenant)
	ingest := commerce.NewIngestor(gdb, cfg.Tenant, customerSvc)

	senders := map[string]channel.Sender{
		channel.WhatsApp: channel.NewWhatsAppSender(cfg.WhatsAppAPIBase, cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID),
	}

	orch := conversation.NewOrchestrator(
		cfg.Tenant,
		customerSvc,
		convRepo,
		agent.NewRouter(agentRepo),
		conversation.NewContextBuilder(gdb, convRepo, customerRepo, cfg.ContextMessageLimit),
		llm.NewRouterClient(cfg.LLMRouterURL, cfg.LLMTimeout, rds),
		gateway,
		senders,
		pub,
	)

	agentSvc := agent.NewService(agentRepo, audit.NewRepo(gdb), cfg.Tenant)

	r := httpapi.NewRouter(gdb, cfg, rds, orch, channel.NewRepo(gdb), agentSvc, ingest)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Info().Str("addr", addr).Msg("server starting")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
