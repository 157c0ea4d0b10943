package error

import "errors"

var (
	NoMatch          = errors.New("no match")
	ActionFailed     = errors.New("action failed")
	ProtectionFailed = errors.New("protection change failed")
	PartialRange     = errors.New("range partially patched")
	ModuleNotFound   = errors.New("module not found")
	OutOfReach       = errors.New("target out of rel32 reach")
	Unsupported      = errors.New("unsupported platform")
	PatchNotFound    = errors.New("patch not found")
	InvalidArgs      = errors.New("invalid arguments")
)
