package ucli

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/cnotes/cli"
)

func TestBuild(t *testing.T) {
	builder := NewBuilder("test", WithUsage("a test app"), WithWriter(io.Discard))
	app := builder.Build().(*urfave.App)

	require.Equal(t, "test", app.Name)
	require.Equal(t, "a test app", app.Usage)

	err := app.Run([]string{"test"})
	require.NoError(t, err)
}

func TestBuild_Action(t *testing.T) {
	called := false

	builder := NewBuilder("test", WithAction(func(flags cli.Flags) error {
		called = true

		require.Equal(t, "abc", flags.String("global"))
		require.True(t, flags.IsSet("global"))

		return nil
	}))

	builder.SetFlags(cli.StringFlag{Name: "global"})

	err := builder.Build().Run([]string{"test", "--global", "abc"})
	require.NoError(t, err)
	require.True(t, called)
}

func TestSetCommand(t *testing.T) {
	builder := NewBuilder("test")

	builder.SetCommand("first")
	builder.SetCommand("second")

	app := builder.Build().(*urfave.App)

	require.Len(t, app.Commands, 3)

	require.Equal(t, "first", app.Commands[0].Name)
	require.Equal(t, "second", app.Commands[1].Name)
	require.Equal(t, "help", app.Commands[2].Name)
}

func TestCommandBuilder(t *testing.T) {
	builder := NewBuilder("test")
	cmd := builder.SetCommand("first")

	fakeAction := func(flags cli.Flags) error {
		return nil
	}

	cmd.SetAction(fakeAction)
	cmd.SetDescription("first action")
	cmd.SetFlags(cli.StringFlag{
		Name:     "arg",
		Usage:    "this is a test arg",
		Required: true,
		Value:    "default",
	})
	cmd.SetSubCommand("second")

	require.Len(t, builder.commands, 1)
	require.Len(t, builder.flags, 0)

	cmd2 := builder.commands[0]
	require.Equal(t, "first action", cmd2.description)
	require.Len(t, cmd2.flags, 1)
	require.Len(t, cmd2.subcommands, 1)
}

func TestCommand_Run(t *testing.T) {
	out := new(bytes.Buffer)
	builder := NewBuilder("test", WithWriter(out))

	var depth int
	var tree string

	cmd := builder.SetCommand("tree")
	sub := cmd.SetSubCommand("create")
	sub.SetFlags(cli.IntFlag{Name: "depth", Value: 14}, cli.PathFlag{Name: "tree"})
	sub.SetAction(func(flags cli.Flags) error {
		depth = flags.Int("depth")
		tree = flags.Path("tree")
		return nil
	})

	err := builder.Build().Run([]string{"test", "tree", "create", "--tree", "/a/b"})
	require.NoError(t, err)
	require.Equal(t, 14, depth)
	require.Equal(t, "/a/b", tree)
}

func TestBuildFlags(t *testing.T) {
	in := []cli.Flag{
		cli.StringFlag{
			Name:     "name1",
			Usage:    "usage1",
			Required: true,
			Value:    "value1",
		},
		cli.IntFlag{
			Name:     "name2",
			Usage:    "usage2",
			Required: true,
			Value:    1,
		},
		cli.PathFlag{
			Name:    "name3",
			Usage:   "usage3",
			Value:   "cnotes.yaml",
			EnvVars: []string{"CNOTES_CONFIG"},
		},
	}

	out := buildFlags(in)
	require.Len(t, out, 3)

	require.Equal(t, "name1", out[0].Names()[0])
	require.Equal(t, "name2", out[1].Names()[0])
	require.Equal(t, "name3", out[2].Names()[0])
	require.Equal(t, []string{"CNOTES_CONFIG"}, out[2].(*urfave.PathFlag).EnvVars)
}

func TestBuildFlags_Panic(t *testing.T) {
	defer func() {
		r := recover()
		require.Equal(t, "flag type '<nil>' not supported", r)
	}()

	buildFlags([]cli.Flag{nil})
}

func TestMakeAction(t *testing.T) {
	res := makeAction(nil)
	require.Nil(t, res)

	isCalled := false
	fakeAction := func(flags cli.Flags) error {
		require.Nil(t, flags)
		isCalled = true
		return nil
	}

	res = makeAction(fakeAction)
	require.NotNil(t, res)

	out := res(nil)
	require.NoError(t, out)
	require.True(t, isCalled)
}
