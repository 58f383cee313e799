package ws

// defaultPort returns the conventional port for a ws/wss scheme.
func defaultPort(scheme string) string {
	if scheme == "wss" {
		return "443"
	}
	return "80"
}
