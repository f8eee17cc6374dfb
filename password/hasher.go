package password

// Hasher produces and checks encoded password hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Algorithm is a Hasher that can recognize its own encoding and report stale
// parameters.
type Algorithm interface {
	Hasher
	Handles(encodedHash string) bool
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Migrating hashes new passwords with Primary and verifies stored hashes with
// whichever algorithm recognizes them. Accounts created with bcrypt keep
// working after switching to argon2id.
type Migrating struct {
	Primary Algorithm
	Legacy  []Algorithm
}

func (m Migrating) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m Migrating) Verify(password, encodedHash string) (bool, error) {
	alg := m.algorithmFor(encodedHash)
	if alg == nil {
		return false, ErrInvalidHash
	}
	return alg.Verify(password, encodedHash)
}

// NeedsRehash reports whether encodedHash should be replaced by a Primary hash
// after the next successful verification.
func (m Migrating) NeedsRehash(encodedHash string) bool {
	if !m.Primary.Handles(encodedHash) {
		return true
	}
	stale, err := m.Primary.NeedsUpgrade(encodedHash)
	return err != nil || stale
}

func (m Migrating) algorithmFor(encodedHash string) Algorithm {
	if m.Primary.Handles(encodedHash) {
		return m.Primary
	}
	for _, alg := range m.Legacy {
		if alg.Handles(encodedHash) {
			return alg
		}
	}
	return nil
}

var (
	_ Algorithm = (*Argon2)(nil)
	_ Algorithm = (*Bcrypt)(nil)
	_ Hasher    = Migrating{}
)
