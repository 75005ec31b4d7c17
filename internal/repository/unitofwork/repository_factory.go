package unitofwork

import (
	"context"
	"fmt"
)

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

// InTransaction runs fn inside one transaction and rolls back when fn fails.
func InTransaction(ctx context.Context, factory RepositoryFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
