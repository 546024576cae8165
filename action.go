package serac

import "fmt"

// Action is what a matching filter does with traffic. Values are the native
// action codes.
type Action uint32

const (
	ActionBlock              Action = 0x1001
	ActionPermit             Action = 0x1002
	ActionCalloutTerminating Action = 0x5003
	ActionCalloutInspection  Action = 0x6004
	ActionCalloutUnknown     Action = 0x4005
)

var actionNames = map[Action]string{
	ActionBlock:              "block",
	ActionPermit:             "permit",
	ActionCalloutTerminating: "callout_terminating",
	ActionCalloutInspection:  "callout_inspection",
	ActionCalloutUnknown:     "callout_unknown",
}

// ParseAction parses the name form produced by String.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(0x%X)", uint32(a))
}

// requiresCallout reports whether the action dispatches to an installed
// callout and therefore needs Filter.Callout set.
func (a Action) requiresCallout() bool {
	switch a {
	case ActionCalloutTerminating, ActionCalloutInspection, ActionCalloutUnknown:
		return true
	}
	return false
}
