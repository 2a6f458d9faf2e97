package sqlstore

import "github.com/goliatone/go-initiatives/core"

var (
	_ core.StoreProvider         = (*RepositoryFactory)(nil)
	_ core.InitiativeStore       = (*InitiativeStore)(nil)
	_ core.ManagerResolver       = (*InitiativeStore)(nil)
	_ core.ParticipationStore    = (*ParticipationStore)(nil)
	_ core.PostNotificationQueue = (*PostNotificationStore)(nil)
	_ core.WebhookEventQueue     = (*WebhookEventStore)(nil)
	_ core.SubscriberStore       = (*SubscriberStore)(nil)
	_ core.ContentResolver       = (*ContentStore)(nil)
	_ core.ContentResolver       = (*CachedContentStore)(nil)
)
