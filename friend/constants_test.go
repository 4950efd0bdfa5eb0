package friend

const (
	testAlice     = "alice"
	testAliceName = "Alice"
	testBob       = "bob"
	testBobName   = "Bob"
	testCarol     = "carol"
	testCarolName = "Carol"
)
