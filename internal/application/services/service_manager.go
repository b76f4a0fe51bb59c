package services

import (
	"github.com/gridbase/gridbase/internal/domain/ports"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
)

// ServiceManager owns every service instance, wired in dependency order
type ServiceManager struct {
	db *database.Connection

	TxManager  *persistence.TransactionManager
	EventBus   *EventBus
	Outbox     *OutboxService
	Auth       *AuthService
	Schema     *SchemaService
	Enum       *EnumService
	Link       *LinkService
	Validation *ValidationService
	Display    *DisplayService
	Record     *RecordService
	Search     *SearchService
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection, indexer ports.DocumentIndexer) *ServiceManager {
	sm := &ServiceManager{db: db}

	schemaRepo := persistence.NewSchemaRepository(db.DB())
	enumRepo := persistence.NewEnumRepository(db.DB())
	recordRepo := persistence.NewRecordRepository(db.DB())
	linkRepo := persistence.NewLinkRepository(db.DB())
	userRepo := persistence.NewUserRepository(db.DB())

	sm.TxManager = persistence.NewTransactionManager(db)
	sm.EventBus = NewEventBus()
	sm.Outbox = NewOutboxService(db, sm.EventBus)

	sm.Auth = NewAuthService(userRepo)
	sm.Schema = NewSchemaService(schemaRepo, linkRepo, enumRepo, recordRepo, sm.TxManager, sm.Outbox)
	sm.Enum = NewEnumService(enumRepo, schemaRepo, sm.TxManager, sm.Outbox)
	sm.Validation = NewValidationService(enumRepo, recordRepo, linkRepo)
	sm.Display = NewDisplayService(schemaRepo, recordRepo, linkRepo)
	sm.Link = NewLinkService(linkRepo, schemaRepo, recordRepo, sm.Validation, sm.TxManager, sm.Outbox)
	sm.Record = NewRecordService(sm.Schema, recordRepo, sm.Link, sm.Validation, sm.Display, sm.TxManager, sm.Outbox)
	sm.Search = NewSearchService(indexer, sm.Schema, recordRepo, sm.Display)

	sm.Search.RegisterHandlers(sm.EventBus)

	return sm
}
