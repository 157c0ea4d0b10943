package service

import (
	"fmt"
	"strings"
)

type CmdType int

const (
	Scan CmdType = iota
	Patch
	Detour
	Restore
	Repatch
	List
	Find
	Status
)

var cmdNames = map[CmdType]string{
	Scan:    "scan",
	Patch:   "patch",
	Detour:  "detour",
	Restore: "restore",
	Repatch: "repatch",
	List:    "list",
	Find:    "find",
	Status:  "status",
}

func (c CmdType) String() string {
	if name, ok := cmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CmdType(%d)", int(c))
}

func ParseCmd(s string) (CmdType, error) {
	s = strings.ToLower(s)
	for c, name := range cmdNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// Client sends commands to a sigpatch server.
type Client interface {
	Send(cmd CmdType, args string) (string, error)
	IsSigpatchServer() bool
	Close() error
}
