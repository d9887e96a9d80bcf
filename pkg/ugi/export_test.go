package ugi

// reset clears the global security state between tests.
func reset() {
	security.mu.Lock()
	defer security.mu.Unlock()
	if security.krb != nil {
		_ = security.krb.Close()
	}
	security.configured = false
	security.cfg = Config{}
	security.groups = nil
	security.krb = nil
	security.login = nil
}
