package routes

type Tag string

const (
	TagUsers  Tag = "users"
	TagHealth Tag = "health"
)

func (t Tag) String() string {
	return string(t)
}

// UsersPrefix is where every account operation lives.
const UsersPrefix = "/api/v1/users"

// BearerAuth marks an operation as requiring an access token, accepted as
// either a bearer header or the accessToken cookie.
var BearerAuth = []map[string][]string{
	{"bearer": {}},
	{"cookie": {}},
}

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

const defaultMaxUploadBytes = 10 << 20
