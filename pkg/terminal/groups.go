package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	quickLookCmds
	dataCmds
	stackCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Saving and previewing object data", quickLookCmds},
	{"Viewing program variables", dataCmds},
	{"Selecting frames", stackCmds},
	{"Other commands", otherCmds},
}
