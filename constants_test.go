package meshchat

const (
	testAlice     = "alice"
	testAliceName = "Alice"
	testBob       = "bob"
	testBobName   = "Bob"
	testCarol     = "carol"
	testCarolName = "Carol"
)
