package main

import (
	"fmt"
	"io"

	"go.dedis.ch/cnotes"
	"go.dedis.ch/cnotes/cli"
	"go.dedis.ch/cnotes/cli/node"
	"go.dedis.ch/cnotes/contracts/notes"
	"go.dedis.ch/cnotes/core/compression/cmt"
	"go.dedis.ch/cnotes/core/eventlog"
	"go.dedis.ch/cnotes/core/execution/native"
	"go.dedis.ch/cnotes/core/runtime"
	"go.dedis.ch/cnotes/core/store/kv"
	"go.dedis.ch/cnotes/core/txn/signed"
	"go.dedis.ch/cnotes/crypto"
	"go.dedis.ch/cnotes/crypto/ed25519"
	"go.dedis.ch/cnotes/crypto/loader"
	"golang.org/x/xerrors"
)

// hostController starts the components every command of the contract needs:
// the database, the event log, the tree engine and the runtime with the
// signer of the transactions.
//
// - implements node.Initializer
type hostController struct {
	out io.Writer
}

func newHostController(out io.Writer) node.Initializer {
	return hostController{out: out}
}

// SetCommands implements node.Initializer. It sets the flags of the
// configuration and the commands to manage the key of the signer.
func (c hostController) SetCommands(builder node.Builder) {
	builder.SetFlags(configFlags()...)

	cmd := builder.SetCommand("keygen")
	cmd.SetDescription("Generate the private key of the signer")
	cmd.SetAction(c.keygen)

	cmd = builder.SetCommand("identity")
	cmd.SetDescription("Show the identity of the signer and its next nonce")
	cmd.SetAction(builder.MakeAction(identityAction{}))
}

// keygen does not need a running node, so that a key can be generated before
// the database exists.
func (c hostController) keygen(flags cli.Flags) error {
	cfg, err := readConfig(flags)
	if err != nil {
		return err
	}

	data, err := loader.NewFileLoader(cfg.Key).Create(keyGenerator{})
	if err != nil {
		return xerrors.Errorf("failed to create key: %w", err)
	}

	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return xerrors.Errorf("failed to restore signer: %v", err)
	}

	id, err := notes.IdentityOf(signer.GetPublicKey())
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "key stored in %s\nidentity %v\n", cfg.Key, id)

	return nil
}

// OnStart implements node.Initializer.
func (c hostController) OnStart(flags cli.Flags, inj node.Injector) error {
	cfg, err := readConfig(flags)
	if err != nil {
		return err
	}

	err = cnotes.SetLevel(cfg.LogLevel)
	if err != nil {
		return xerrors.Errorf("invalid log level: %v", err)
	}

	program, err := cfg.Program()
	if err != nil {
		return err
	}

	signer, err := loadSigner(cfg.Key)
	if err != nil {
		return err
	}

	db, err := kv.New(cfg.DB)
	if err != nil {
		return xerrors.Errorf("failed to open database: %v", err)
	}

	var opts []eventlog.Option
	if cfg.MaxEventSize > 0 {
		opts = append(opts, eventlog.WithMaxSize(cfg.MaxEventSize))
	}

	log := eventlog.NewLog(opts...)
	engine := cmt.NewEngine(log)
	exec := native.NewExecution()

	rt, err := runtime.NewRuntime(db, exec)
	if err != nil {
		db.Close()
		return xerrors.Errorf("failed to create runtime: %v", err)
	}

	rt.Watch(txLogger{})

	inj.Inject(cfg)
	inj.Inject(program)
	inj.Inject(db)
	inj.Inject(log)
	inj.Inject(engine)
	inj.Inject(exec)
	inj.Inject(rt)
	inj.Inject(signer)
	inj.Inject(signed.NewManager(signer, rt))

	cnotes.Logger.Debug().
		Str("db", cfg.DB).
		Stringer("program", program).
		Msg("node started")

	return nil
}

// OnStop implements node.Initializer. It closes the database.
func (c hostController) OnStop(inj node.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("failed to close database: %v", err)
	}

	return nil
}

// identityAction is an action to print the identity of the signer.
//
// - implements node.ActionTemplate
type identityAction struct{}

// Execute implements node.ActionTemplate.
func (identityAction) Execute(ctx node.Context) error {
	var signer crypto.Signer
	err := ctx.Injector.Resolve(&signer)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var rt *runtime.Runtime
	err = ctx.Injector.Resolve(&rt)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	id, err := notes.IdentityOf(signer.GetPublicKey())
	if err != nil {
		return err
	}

	nonce, err := rt.GetNonce(signer.GetPublicKey())
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "identity %v\nnonce %d\n", id, nonce)

	return nil
}

// txLogger reports the committed transactions in the log of the host.
//
// - implements core.Observer
type txLogger struct{}

// NotifyCallback implements core.Observer.
func (txLogger) NotifyCallback(event interface{}) {
	evt, ok := event.(runtime.Executed)
	if !ok {
		return
	}

	ident, err := evt.Identity.MarshalText()
	if err != nil {
		return
	}

	cnotes.Logger.Info().
		Bytes("identity", ident).
		Uint64("nonce", evt.Nonce).
		Msg("transaction committed")
}

// keyGenerator generates the private key of a new signer.
//
// - implements loader.Generator
type keyGenerator struct{}

// Generate implements loader.Generator.
func (keyGenerator) Generate() ([]byte, error) {
	signer := ed25519.NewSigner()

	data, err := signer.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal signer: %v", err)
	}

	return data, nil
}

func loadSigner(path string) (crypto.Signer, error) {
	data, err := loader.NewFileLoader(path).LoadOrCreate(keyGenerator{})
	if err != nil {
		return nil, xerrors.Errorf("failed to load key: %v", err)
	}

	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to restore signer: %v", err)
	}

	return signer, nil
}
