package memory

import (
	"testing"

	"account-console/internal/repository"
	"account-console/internal/repository/repotest"
)

func TestAccountRepository(t *testing.T) {
	repotest.AccountRepository(t, func(t *testing.T) repository.AccountRepository {
		return NewAccountRepository()
	})
}
