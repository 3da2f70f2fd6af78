package engine

import (
	"context"

	"github.com/pkg/errors"
)

// WebsiteNoteType tags the note web findings of a service hang under.
const WebsiteNoteType = "website"

// Emit hands reports to sink in a fixed order: host, interface, host notes,
// host vulns, then every service with its notes, announced websites,
// credentials and findings. A sink error stops emission.
func Emit(ctx context.Context, sink Sink, reports []HostReport) error {
	for i := range reports {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emitHost(ctx, sink, &reports[i]); err != nil {
			return errors.Wrapf(err, "could not emit host %s", reports[i].Host.IP)
		}
	}
	return nil
}

func emitHost(ctx context.Context, sink Sink, r *HostReport) error {
	hostID, err := sink.CreateHost(ctx, r.Host)
	if err != nil {
		return err
	}

	var ifaceID ID
	if r.Interface != nil {
		if ifaceID, err = sink.CreateInterface(ctx, hostID, *r.Interface); err != nil {
			return err
		}
	}

	for _, n := range r.Notes {
		if _, err := sink.CreateNoteOnHost(ctx, hostID, n); err != nil {
			return err
		}
	}
	for _, v := range r.Vulns {
		if _, err := sink.CreateVulnOnHost(ctx, hostID, v); err != nil {
			return err
		}
	}

	for i := range r.Services {
		if err := emitService(ctx, sink, hostID, ifaceID, r.Interface != nil, &r.Services[i]); err != nil {
			return errors.Wrapf(err, "service %s/%s", r.Services[i].Service.Name, r.Services[i].Service.Protocol)
		}
	}
	return nil
}

func emitService(ctx context.Context, sink Sink, hostID, ifaceID ID, onInterface bool, s *ServiceReport) error {
	var (
		serviceID ID
		err       error
	)
	if onInterface {
		serviceID, err = sink.CreateServiceOnInterface(ctx, hostID, ifaceID, s.Service)
	} else {
		serviceID, err = sink.CreateServiceOnHost(ctx, hostID, s.Service)
	}
	if err != nil {
		return err
	}

	for _, n := range s.Notes {
		if _, err := sink.CreateNoteOnService(ctx, hostID, serviceID, n); err != nil {
			return err
		}
	}

	// created at most once per service, on first use
	var (
		websiteNote ID
		haveWebsite bool
	)
	website := func() (ID, error) {
		if haveWebsite {
			return websiteNote, nil
		}
		id, err := sink.CreateNoteOnService(ctx, hostID, serviceID, Note{Type: WebsiteNoteType})
		if err != nil {
			return "", err
		}
		websiteNote, haveWebsite = id, true
		return id, nil
	}

	for _, vhost := range s.Websites {
		parent, err := website()
		if err != nil {
			return err
		}
		if _, err := sink.CreateNoteOnNote(ctx, hostID, serviceID, parent, Note{Type: vhost}); err != nil {
			return err
		}
	}

	for _, c := range s.Credentials {
		if _, err := sink.CreateCredentialOnService(ctx, hostID, serviceID, c); err != nil {
			return err
		}
		if c.Finding != nil {
			if _, err := sink.CreateVulnOnService(ctx, hostID, serviceID, *c.Finding); err != nil {
				return err
			}
		}
	}

	for _, f := range s.Findings {
		switch v := f.(type) {
		case WebVuln:
			if s.NoteWebFindings {
				parent, err := website()
				if err != nil {
					return err
				}
				if _, err := sink.CreateNoteOnNote(ctx, hostID, serviceID, parent, Note{Type: v.Website}); err != nil {
					return err
				}
			}
			if _, err := sink.CreateWebVulnOnService(ctx, hostID, serviceID, v); err != nil {
				return err
			}
		case Vuln:
			if _, err := sink.CreateVulnOnService(ctx, hostID, serviceID, v); err != nil {
				return err
			}
		}
	}
	return nil
}
