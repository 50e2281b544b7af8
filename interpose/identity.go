package interpose

// Passwd is a password database entry.
type Passwd struct {
	Name  string
	UID   int
	GID   int
	Home  string
	Shell string
}

// Group is a group database entry.
type Group struct {
	Name string
	GID  int
}

// Unprivileged lookups resolve every name to these. dpkg only needs the
// numeric ids, which it then passes to chown, and that is suppressed as
// well.
func placeholderPasswd() *Passwd { return &Passwd{UID: 0, GID: 0} }

func placeholderGroup() *Group { return &Group{GID: 0} }
