package exam

// Confirm is the yes/no decision point consulted before a submitting or destructive action.
// action describes what is about to happen, eg: "delete exam 3 and all its results".
type Confirm func(action string) bool

// Confirmed returns a Confirm that always answers yes.
func Confirmed(yes bool) Confirm {
	return func(string) bool { return yes }
}

func (c Confirm) ask(action string) bool {
	return c != nil && c(action)
}
