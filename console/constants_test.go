package console

const (
	testAlice     = "alice"
	testAliceName = "Alice"
	testBob       = "bob"
	testBobName   = "Bob"
)
