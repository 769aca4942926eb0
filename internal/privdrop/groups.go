package privdrop

import (
	"errors"
	"strconv"

	"github.com/opencontainers/runc/libcontainer/user"

	"github.com/castellan-io/castellan/internal/subproc"
)

// Groups is the local group database capability: resolve a gid to a name,
// create a group with a fixed gid, add a member. Mutation goes through the
// image's groupadd/usermod tools; lookup reads /etc/group directly. Tests
// inject an in-memory fake.
type Groups interface {
	LookupGid(gid int) (name string, found bool, err error)
	Create(name string, gid int) error
	AddMember(group, username string) error
}

type etcGroups struct {
	runner subproc.Runner
}

// EtcGroups returns the host-backed Groups implementation.
func EtcGroups() Groups {
	return &etcGroups{runner: subproc.Inherit()}
}

func (g *etcGroups) LookupGid(gid int) (string, bool, error) {
	grp, err := user.LookupGid(gid)
	if err != nil {
		if errors.Is(err, user.ErrNoGroupEntries) {
			return "", false, nil
		}
		return "", false, err
	}
	return grp.Name, true, nil
}

func (g *etcGroups) Create(name string, gid int) error {
	// -f tolerates the name already existing with another gid; the caller
	// re-resolves by gid afterwards.
	return g.runner.Run([]string{"groupadd", "-f", "-g", strconv.Itoa(gid), name})
}

func (g *etcGroups) AddMember(group, username string) error {
	return g.runner.Run([]string{"usermod", "-a", "-G", group, username})
}
