package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormatter() UsageFormatter {
	return UsageFormatter{
		T:        echoLocalizer{}.Resolve("en-GB"),
		Settings: Settings{CommandPrefix: "!", ErrorColour: 0xAA0000, SuccessColour: 0x00AA00},
	}
}

func TestUsageNamed(t *testing.T) {
	d := &Descriptor{
		Name: "kick",
		Mode: ModeNamed,
		Args: []Arg{
			{Name: "target", Required: true, Example: "@user", Description: "who"},
			{Name: "reason", Example: "spam", Description: "why"},
		},
	}
	p := testFormatter().Usage(d, "k")

	assert.Equal(t, 0xAA0000, p.Colour)
	assert.Equal(t, "{cmd_usage.title [k]}", p.Title)
	assert.Equal(t,
		"{cmd_usage.named_args}{cmd_usage.description [!k <target;> [reason;] !k target: @user; reason: spam;]}",
		p.Description,
	)
	require.Len(t, p.Fields, 2)
	assert.Equal(t, "`{cmd_usage.args.required}` target", p.Fields[0].Name)
	assert.Equal(t, "{cmd_usage.args.description} who\n{cmd_usage.args.example} `@user`", p.Fields[0].Value)
	assert.Equal(t, "reason", p.Fields[1].Name)
}

func TestUsagePositional(t *testing.T) {
	d := &Descriptor{
		Name: "add",
		Args: []Arg{
			{Name: "member", Required: true, Example: "@user"},
			{Name: "ticket", Example: "12"},
		},
	}
	p := testFormatter().Usage(d, "add")
	assert.Equal(t, "{cmd_usage.description [!add <member> [ticket] !add @user 12]}", p.Description)
}

func TestUsageWithoutArgs(t *testing.T) {
	p := testFormatter().Usage(&Descriptor{Name: "ping"}, "ping")
	assert.Equal(t, "{cmd_usage.description [!ping !ping]}", p.Description)
	assert.Empty(t, p.Fields)
}

func TestDenialPayloads(t *testing.T) {
	f := testFormatter()

	p := f.MissingPermissions([]Permission{PermissionKickMembers, PermissionBanMembers})
	assert.Equal(t, "{missing_perms.description [`KICK_MEMBERS`, `BAN_MEMBERS`]}", p.Description)
	assert.Equal(t, 0xAA0000, p.Colour)

	assert.Equal(t, "{staff_only.title}", f.StaffOnly().Title)

	e := f.ExecutionError()
	assert.Equal(t, ColourOrange, e.Colour)
	assert.Equal(t, "{command_execution_error.description}", e.Description)
}

func TestFormatterWithoutTranslator(t *testing.T) {
	p := UsageFormatter{}.StaffOnly()
	assert.Equal(t, "staff_only.title", p.Title)
}
