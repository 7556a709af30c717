package service

import (
	"context"
	"time"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/repository"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Account is the stored state of a token subject. Tokens only prove identity;
// role and status always come from here.
type Account struct {
	UserID uuid.UUID
	Email  string
	Role   string
	Status string
}

func (a Account) Active() bool { return a.Status == model.UserStatusActive }

// AccountResolver looks up the live account behind a token subject.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, userID string) (*Account, error)
}

// AccountInvalidator is told when stored roles or statuses change.
type AccountInvalidator interface {
	Forget(userID uuid.UUID)
	Purge()
}

// AccountCache resolves accounts through a short-lived LRU in front of the
// user table.
type AccountCache struct {
	users repository.UserRepository
	cache *expirable.LRU[uuid.UUID, Account]
}

func NewAccountCache(users repository.UserRepository, size int, ttl time.Duration) *AccountCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AccountCache{users: users, cache: expirable.NewLRU[uuid.UUID, Account](size, nil, ttl)}
}

func (c *AccountCache) ResolveAccount(ctx context.Context, userID string) (*Account, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Authentication, err, "invalid token subject")
	}
	if acc, ok := c.cache.Get(id); ok {
		return &acc, nil
	}
	u, err := c.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.New(apperr.Authentication, "account no longer exists")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load account")
	}
	acc := Account{UserID: u.ID, Email: u.Email, Role: u.Role, Status: u.Status}
	c.cache.Add(id, acc)
	return &acc, nil
}

func (c *AccountCache) Forget(userID uuid.UUID) { c.cache.Remove(userID) }

func (c *AccountCache) Purge() { c.cache.Purge() }

type noopInvalidator struct{}

func (noopInvalidator) Forget(uuid.UUID) {}
func (noopInvalidator) Purge()           {}

func invalidatorOrNoop(i AccountInvalidator) AccountInvalidator {
	if i == nil {
		return noopInvalidator{}
	}
	return i
}
