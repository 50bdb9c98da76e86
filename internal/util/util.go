package util

// HideKeyID obscures a credential identifier for logging purposes, showing
// only the first and last few characters.
func HideKeyID(id string) string {
	if len(id) > 8 {
		return id[:4] + "..." + id[len(id)-4:]
	} else if len(id) > 4 {
		return id[:2] + "..." + id[len(id)-2:]
	} else if len(id) > 2 {
		return id[:1] + "..." + id[len(id)-1:]
	}
	return id
}
