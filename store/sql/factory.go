package sqlstore

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-initiatives/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory owns one instance of every bun backed store over a
// shared *bun.DB and serves them as a core.StoreProvider.
type RepositoryFactory struct {
	db *bun.DB

	initiatives    *InitiativeStore
	participations *ParticipationStore
	posts          *PostNotificationStore
	webhookEvents  *WebhookEventStore
	subscribers    *SubscriberStore
	content        *ContentStore
	rateLimits     *RateLimitStateStore
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return NewRepositoryFactory(client.DB())
}

func NewRepositoryFactory(db *bun.DB) (*RepositoryFactory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	f := &RepositoryFactory{db: db}
	var errs []error
	build := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	f.initiatives, err = NewInitiativeStore(db)
	build(err)
	f.participations, err = NewParticipationStore(db)
	build(err)
	f.posts, err = NewPostNotificationStore(db)
	build(err)
	f.webhookEvents, err = NewWebhookEventStore(db)
	build(err)
	f.subscribers, err = NewSubscriberStore(db)
	build(err)
	f.content, err = NewContentStore(db)
	build(err)
	f.rateLimits, err = NewRateLimitStateStore(db)
	build(err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("sqlstore: build stores: %w", err)
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB { return f.db }

func (f *RepositoryFactory) InitiativeStore() core.InitiativeStore { return f.initiatives }

func (f *RepositoryFactory) ParticipationStore() core.ParticipationStore { return f.participations }

func (f *RepositoryFactory) PostNotificationQueue() core.PostNotificationQueue { return f.posts }

func (f *RepositoryFactory) WebhookEventQueue() core.WebhookEventQueue { return f.webhookEvents }

func (f *RepositoryFactory) SubscriberStore() *SubscriberStore { return f.subscribers }

func (f *RepositoryFactory) ContentStore() *ContentStore { return f.content }

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore { return f.rateLimits }
