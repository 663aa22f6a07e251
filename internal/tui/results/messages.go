package results

// StatusNotifyMsg tells the app to show a message in the status bar
type StatusNotifyMsg struct {
	Message string
}

// CellEditedMsg reports that the edit overlay changed
type CellEditedMsg struct {
	Row, Col int
}

// ShowTableMsg asks the app to bring back the edited table hidden behind an
// error or statement message
type ShowTableMsg struct{}
