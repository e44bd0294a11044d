package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-formrelay/core"
	"github.com/goliatone/go-formrelay/ratelimit"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL-backed stores off a shared bun handle.
// It satisfies the duck-typed store accessors the service looks for when a
// repository factory is supplied.
type RepositoryFactory struct {
	db *bun.DB

	formConfigStore *FormConfigStore
	submissionStore *SubmissionStore
	deliveryStore   *DeliveryStore
	rateWindowStore *RateWindowStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.formConfigStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) FormConfigStore() core.FormConfigStore {
	if f == nil || f.formConfigStore == nil {
		return nil
	}
	return f.formConfigStore
}

func (f *RepositoryFactory) SubmissionStore() core.SubmissionStore {
	if f == nil || f.submissionStore == nil {
		return nil
	}
	return f.submissionStore
}

func (f *RepositoryFactory) DeliveryStore() core.DeliveryStore {
	if f == nil || f.deliveryStore == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) RateWindowStore() ratelimit.WindowStore {
	if f == nil || f.rateWindowStore == nil {
		return nil
	}
	return f.rateWindowStore
}

func (f *RepositoryFactory) initStores() error {
	formConfigStore, err := NewFormConfigStore(f.db)
	if err != nil {
		return err
	}
	f.formConfigStore = formConfigStore

	submissionStore, err := NewSubmissionStore(f.db)
	if err != nil {
		return err
	}
	f.submissionStore = submissionStore

	deliveryStore, err := NewDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore

	rateWindowStore, err := NewRateWindowStore(f.db)
	if err != nil {
		return err
	}
	f.rateWindowStore = rateWindowStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
