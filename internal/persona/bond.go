package persona

const (
	bondMin = 0
	bondMax = 100

	DefaultBondIncrease = 1
	DefaultBondDecrease = 2
)

// increaseBond raises the bond by delta, clamped to [0,100]. Caller holds u.mu.
func (u *UserState) increaseBond(delta int) {
	u.Bond = clampBond(u.Bond + delta)
}

// decreaseBond lowers the bond by delta, clamped to [0,100]. Caller holds u.mu.
func (u *UserState) decreaseBond(delta int) {
	u.Bond = clampBond(u.Bond - delta)
}

func clampBond(b int) int {
	if b < bondMin {
		return bondMin
	}
	if b > bondMax {
		return bondMax
	}
	return b
}

// IncreaseBond raises a user's bond, creating the user if needed.
func (e *Engine) IncreaseBond(userID string, delta int) int {
	u := e.users.Get(userID, e.now())
	u.mu.Lock()
	defer u.mu.Unlock()
	u.increaseBond(delta)
	e.markDirty()
	return u.Bond
}

// DecreaseBond lowers a user's bond, creating the user if needed.
func (e *Engine) DecreaseBond(userID string, delta int) int {
	u := e.users.Get(userID, e.now())
	u.mu.Lock()
	defer u.mu.Unlock()
	u.decreaseBond(delta)
	e.markDirty()
	return u.Bond
}
