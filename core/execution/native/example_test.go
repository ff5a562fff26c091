package native

import (
	"fmt"

	"go.dedis.ch/cnotes/core/execution"
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/core/txn/signed"
	"go.dedis.ch/cnotes/crypto/ed25519"
	"go.dedis.ch/cnotes/testing/fake"
)

func ExampleService_Execute() {
	srvc := NewExecution()
	srvc.Set("journal", journalContract{})

	snap := fake.NewSnapshot()
	signer := ed25519.NewSigner()

	for i, line := range []string{"first", "second", ""} {
		opts := []signed.TransactionOption{
			signed.WithArg("line", []byte(line)),
			signed.WithArg(ContractArg, []byte("journal")),
		}

		tx, err := signed.NewTransaction(uint64(i), signer.GetPublicKey(), opts...)
		if err != nil {
			panic("failed to create transaction: " + err.Error())
		}

		res, err := srvc.Execute(snap, execution.Step{Current: tx})
		if err != nil {
			panic("failed to execute: " + err.Error())
		}

		if res.Accepted {
			fmt.Println("accepted")
		} else {
			fmt.Println("refused:", res.Message)
		}
	}

	value, err := snap.Get([]byte("journal"))
	if err != nil {
		panic("store failed: " + err.Error())
	}

	fmt.Println(string(value))

	// Output: accepted
	// accepted
	// refused: empty line
	// first;second;
}

// journalContract is an example contract that appends the line of the
// transaction to a journal in the store.
//
// - implements native.Contract
type journalContract struct{}

// Execute implements native.Contract.
func (journalContract) Execute(snap store.Snapshot, step execution.Step) error {
	line := step.Current.GetArg("line")
	if len(line) == 0 {
		return fmt.Errorf("empty line")
	}

	value, err := snap.Get([]byte("journal"))
	if err != nil {
		return err
	}

	value = append(value, line...)
	value = append(value, ';')

	return snap.Set([]byte("journal"), value)
}

// UID implements native.Contract.
func (journalContract) UID() string {
	return "JRNL"
}
