// Package privdrop normalizes privileges before the process handoff. When
// castellan starts as root it reconciles the shared docker socket's group
// with the local group database, fixes ownership and permissions on the two
// data directories, and produces the credential the Process Replacer drops
// to. When it starts unprivileged the whole step is a logged no-op.
package privdrop

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/opencontainers/runc/libcontainer/user"

	"github.com/castellan-io/castellan/internal/config"
	"github.com/castellan-io/castellan/internal/launch"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
	"github.com/castellan-io/castellan/pkg/logger"
)

// Directory modes after normalization: media is produced by the app, certs
// are only consumed by it.
const (
	mediaMode os.FileMode = 0770
	certsMode os.FileMode = 0750
)

// osIface is the filesystem and identity surface Normalize touches, mockable
// for tests.
type osIface interface {
	Geteuid() int
	LookupUser(name string) (uid, gid int, home string, err error)
	// SocketGid returns the owning gid of path when path exists and is a
	// unix socket; ok is false when it is absent or not a socket.
	SocketGid(path string) (gid int, ok bool, err error)
	ChownTree(root string, uid, gid int) error
	Chmod(path string, mode os.FileMode) error
}

type realOS struct{}

func (realOS) Geteuid() int { return os.Geteuid() }

func (realOS) LookupUser(name string) (int, int, string, error) {
	u, err := user.LookupUser(name)
	if err != nil {
		return 0, 0, "", err
	}
	return u.Uid, u.Gid, u.Home, nil
}

func (realOS) SocketGid(path string) (int, bool, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if st.Mode&syscall.S_IFMT != syscall.S_IFSOCK {
		return 0, false, nil
	}
	return int(st.Gid), true, nil
}

func (realOS) ChownTree(root string, uid, gid int) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Lchown(p, uid, gid)
	})
}

func (realOS) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// Normalizer computes and applies the privilege normalization for one boot.
type Normalizer struct {
	cfg    *config.Config
	os     osIface
	groups Groups
}

func New(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg, os: realOS{}, groups: EtcGroups()}
}

// newWithDeps is the test constructor.
func newWithDeps(cfg *config.Config, osi osIface, g Groups) *Normalizer {
	return &Normalizer{cfg: cfg, os: osi, groups: g}
}

// Normalize returns the credential for the handoff. A nil credential means
// the process is already unprivileged and proceeds under its current
// identity. Any failure is fatal to startup; privilege setup is
// all-or-nothing with no retry.
func (n *Normalizer) Normalize() (*launch.Credential, error) {
	if n.os.Geteuid() != 0 {
		logger.Log.Info("not running as root, skipping permission fixes")
		return nil, nil
	}

	uid, gid, home, err := n.os.LookupUser(n.cfg.User)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeGroupSetup, "PrivilegeNormalize",
			"resolving account "+n.cfg.User, err)
	}
	if n.cfg.Home != "" {
		home = n.cfg.Home
	}

	cred := &launch.Credential{
		UID:    uid,
		GID:    gid,
		Groups: []int{gid},
		Home:   home,
		Spec:   n.cfg.User + ":" + n.cfg.User,
	}

	if sockGid, ok, err := n.os.SocketGid(n.cfg.DockerSocket); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeGroupSetup, "PrivilegeNormalize",
			"inspecting "+n.cfg.DockerSocket, err)
	} else if ok {
		name, err := n.reconcileGroup(sockGid)
		if err != nil {
			return nil, err
		}
		cred.Groups = append(cred.Groups, sockGid)
		cred.Spec = n.cfg.User + ":" + name
		logger.Log.Info("shared socket group reconciled",
			"socket", n.cfg.DockerSocket, "gid", sockGid, "group", name)
	}

	if err := n.fixOwnership(uid, gid); err != nil {
		return nil, err
	}
	return cred, nil
}

// reconcileGroup ensures a local group with the socket's gid exists, makes
// the unprivileged account a member, and returns the group's resolved name.
// The name is resolved from the gid, never assumed: a pre-existing group
// with this gid may be called anything.
func (n *Normalizer) reconcileGroup(gid int) (string, error) {
	name, found, err := n.groups.LookupGid(gid)
	if err != nil {
		return "", cerrors.New(cerrors.ErrCodeGroupSetup, "PrivilegeNormalize",
			fmt.Sprintf("looking up gid %d", gid), err)
	}
	if !found {
		if err := n.groups.Create("docker", gid); err != nil {
			return "", cerrors.New(cerrors.ErrCodeGroupSetup, "PrivilegeNormalize",
				fmt.Sprintf("creating group for gid %d", gid), err)
		}
		name, found, err = n.groups.LookupGid(gid)
		if err != nil || !found {
			return "", cerrors.New(cerrors.ErrCodeGroupSetup, "PrivilegeNormalize",
				fmt.Sprintf("gid %d still unresolvable after create", gid), err)
		}
	}
	if err := n.groups.AddMember(name, n.cfg.User); err != nil {
		return "", cerrors.New(cerrors.ErrCodeGroupSetup, "PrivilegeNormalize",
			fmt.Sprintf("adding %s to group %s", n.cfg.User, name), err)
	}
	return name, nil
}

func (n *Normalizer) fixOwnership(uid, gid int) error {
	for _, fix := range []struct {
		dir  string
		mode os.FileMode
	}{
		{n.cfg.MediaDir, mediaMode},
		{n.cfg.CertsDir, certsMode},
	} {
		if err := n.os.ChownTree(fix.dir, uid, gid); err != nil {
			return cerrors.New(cerrors.ErrCodeOwnershipSetup, "PrivilegeNormalize",
				"chown -R "+fix.dir, err)
		}
		if err := n.os.Chmod(fix.dir, fix.mode); err != nil {
			return cerrors.New(cerrors.ErrCodeOwnershipSetup, "PrivilegeNormalize",
				fmt.Sprintf("chmod %o %s", fix.mode, fix.dir), err)
		}
	}
	return nil
}
