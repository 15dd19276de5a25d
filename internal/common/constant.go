package common

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the authorization scheme accepted by the middleware.
const BearerScheme = "Bearer"

// DefaultRole is granted to every principal created through sign-up.
const DefaultRole = "USER"

// AuthorityPrefix is prepended to role names when they are exposed as authorities.
const AuthorityPrefix = "ROLE_"
