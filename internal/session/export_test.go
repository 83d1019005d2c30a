package session

// AIIdle reports whether no AI answer is outstanding.
func (h *HostedGame) AIIdle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aiPending == -1
}

// InjectPremove stores pm as is, bypassing the submission checks.
func (h *HostedGame) InjectPremove(player int, pm Premove) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.premoves[player] = &pm
}
