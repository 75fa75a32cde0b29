package postgres

import "gorm.io/gorm"

type Repositories struct {
	Links       *linkRepository
	Idempotency *idempotencyRepository
	EventDedup  *eventDedupRepository
	Outbox      *outboxRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Links:       &linkRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
		EventDedup:  &eventDedupRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}
