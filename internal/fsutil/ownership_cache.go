package fsutil

import (
	"os/user"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// userGroupCache resolves uid/gid to names without a syscall on every stat,
// grounded on spec.md §9's "Shared-state caches" design note: a process-wide
// cache behind short critical sections, shared across tasks. go-cache is
// already used by the example pack for exactly this kind of TTL-bounded
// lookup cache (rclone's backend/cache/storage_memory.go).
var userGroupCache = gocache.New(10*time.Minute, 30*time.Minute)

func lookupUserName(uid int) string {
	key := "u:" + strconv.Itoa(uid)
	if v, ok := userGroupCache.Get(key); ok {
		return v.(string)
	}
	name := strconv.Itoa(uid)
	if u, err := user.LookupId(name); err == nil {
		name = u.Username
	}
	userGroupCache.Set(key, name, gocache.DefaultExpiration)
	return name
}

func lookupGroupName(gid int) string {
	key := "g:" + strconv.Itoa(gid)
	if v, ok := userGroupCache.Get(key); ok {
		return v.(string)
	}
	name := strconv.Itoa(gid)
	if g, err := user.LookupGroupId(name); err == nil {
		name = g.Name
	}
	userGroupCache.Set(key, name, gocache.DefaultExpiration)
	return name
}
