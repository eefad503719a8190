package daemon

// servicePicker lets the file-enumerator subprocess read more of its
// stdout, per spec.md §4.6 step 8. Once it signals EOF, its state simply
// stops being "scanning" — the next picker_query just searches whatever
// file_list was accumulated.
func (d *Daemon) servicePicker(revents int16) {
	eof, err := d.picker.PumpLine()
	if err != nil {
		d.log.WithError(err).Debug("daemon: picker enumerator read failed")
		return
	}
	if eof {
		d.log.Debug("daemon: picker enumerator finished")
	}
}
