package engine

import "context"

// Sink receives normalized entities and owns their identity. Returned IDs are
// only passed back into later calls of the same parse.
type Sink interface {
	CreateHost(ctx context.Context, h Host) (ID, error)
	CreateInterface(ctx context.Context, hostID ID, iface Interface) (ID, error)
	CreateServiceOnInterface(ctx context.Context, hostID, interfaceID ID, s Service) (ID, error)
	CreateServiceOnHost(ctx context.Context, hostID ID, s Service) (ID, error)
	CreateVulnOnHost(ctx context.Context, hostID ID, v Vuln) (ID, error)
	CreateVulnOnService(ctx context.Context, hostID, serviceID ID, v Vuln) (ID, error)
	CreateWebVulnOnService(ctx context.Context, hostID, serviceID ID, v WebVuln) (ID, error)
	CreateNoteOnHost(ctx context.Context, hostID ID, n Note) (ID, error)
	CreateNoteOnService(ctx context.Context, hostID, serviceID ID, n Note) (ID, error)
	CreateNoteOnNote(ctx context.Context, hostID, serviceID, parentID ID, n Note) (ID, error)
	CreateCredentialOnService(ctx context.Context, hostID, serviceID ID, c Credential) (ID, error)
}
