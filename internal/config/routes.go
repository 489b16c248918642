package config

// Route path constants
// All redirect targets are defined here to ensure consistency and prevent typos
const (
	// Sign-in entry point for any unauthenticated or expired session
	RouteSignIn = "/signin"

	// Role landing areas
	RouteUserHome       = "/"
	RouteAdminDashboard = "/admin/dashboard"
)

type Routes struct{}

var _ RouteConfig = Routes{}

func (Routes) GetSignInPath() string {
	return GetEnv("SIGNIN_PATH", RouteSignIn)
}

func (Routes) GetUserHomePath() string {
	return GetEnv("USER_HOME_PATH", RouteUserHome)
}

func (Routes) GetAdminHomePath() string {
	return GetEnv("ADMIN_HOME_PATH", RouteAdminDashboard)
}
