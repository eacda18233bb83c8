package model

// Role роль вызывающего; приходит из внешнего слоя авторизации и здесь не проверяется
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleStaff   Role = "staff"
	RoleSystem  Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleStaff, RoleSystem:
		return true
	}
	return false
}

// IsStaff сотрудники школы (учитель или администратор)
func (r Role) IsStaff() bool {
	return r == RoleTeacher || r == RoleStaff
}

type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// SystemActor от его имени работают фоновые задачи
var SystemActor = Actor{ID: 0, Role: RoleSystem}
