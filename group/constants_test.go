package group

const (
	testAlice     = "alice"
	testAliceName = "Alice"
	testBob       = "bob"
	testBobName   = "Bob"
	testCarol     = "carol"
	testCarolName = "Carol"
	testGroupName = "Study"
	testGroupID   = "alice_study"
)
