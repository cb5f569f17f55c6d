package domain

// Роли приходят из сервиса аутентификации, здесь им полностью доверяем.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal — аутентифицированный пользователь, разрешенный на границе
// и передаваемый в оркестраторы явно.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanActFor сообщает, может ли субъект выполнять операции от имени ownerID.
func (p Principal) CanActFor(ownerID string) bool {
	return p.UserID == ownerID || p.IsAdmin()
}
