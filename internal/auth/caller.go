package auth

// Identity — личность аутентифицированного пользователя из claims токена.
type Identity struct {
	UserID int64
	Email  string
}

// Caller описывает вызывающую сторону запроса: либо аутентифицированного
// пользователя, либо анонимного посетителя. Нулевое значение — аноним.
type Caller struct {
	identity      Identity
	authenticated bool
}

// Authenticated создаёт Caller для пользователя с подтверждённой личностью.
func Authenticated(id Identity) Caller {
	return Caller{identity: id, authenticated: true}
}

// Anonymous создаёт Caller для неаутентифицированного посетителя.
func Anonymous() Caller {
	return Caller{}
}

// Identity возвращает личность вызывающей стороны и признак того,
// что она аутентифицирована.
func (c Caller) Identity() (Identity, bool) {
	return c.identity, c.authenticated
}
