package subsidy

import (
	"context"

	"github.com/warp/careerup/generic"
)

// Repository stores clients and applications, partitioned by office.
// Every call is scoped to one office; a record from another office is
// reported as not found.
//
// Implementations: store/sqlite (durable) and store/memory (tests, demo).
type Repository interface {
	ListOffices(ctx context.Context) ([]generic.OfficeID, error)

	ListClients(ctx context.Context, office generic.OfficeID) ([]Client, error)
	GetClient(ctx context.Context, office generic.OfficeID, id generic.ClientID) (*Client, error)
	CreateClient(ctx context.Context, c Client) (*Client, error)
	UpdateClient(ctx context.Context, office generic.OfficeID, id generic.ClientID, patch ClientPatch) (*Client, error)
	// DeleteClient removes the client and all of its applications.
	DeleteClient(ctx context.Context, office generic.OfficeID, id generic.ClientID) error

	ListApplications(ctx context.Context, office generic.OfficeID, filter ApplicationFilter) ([]Application, error)
	GetApplication(ctx context.Context, office generic.OfficeID, id generic.ApplicationID) (*Application, error)
	CreateApplication(ctx context.Context, a Application) (*Application, error)
	UpdateApplication(ctx context.Context, office generic.OfficeID, id generic.ApplicationID, patch ApplicationPatch) (*Application, error)
	// ChangeStatus applies Application.CheckStatusChange and appends history.
	ChangeStatus(ctx context.Context, office generic.OfficeID, id generic.ApplicationID, to ApplicationStatus, note string) (*Application, error)
	StatusHistory(ctx context.Context, office generic.OfficeID, id generic.ApplicationID) ([]StatusChange, error)
	DeleteApplication(ctx context.Context, office generic.OfficeID, id generic.ApplicationID) error

	// Restore loads a batch of records into office. With replace, existing
	// records of the office are removed first; otherwise records are upserted
	// by ID.
	Restore(ctx context.Context, office generic.OfficeID, clients []Client, apps []Application, replace bool) error

	// Subscribe registers fn for committed changes in office.
	Subscribe(office generic.OfficeID, fn func(generic.Change)) (cancel func())

	Close() error
}
