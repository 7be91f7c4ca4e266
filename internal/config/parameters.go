package config

// SSM parameter store paths shared by the handlers.
const (
	ParameterLogArchiveAccountID = "/superwerker/account_id_logarchive"
	ParameterAuditAccountID      = "/superwerker/account_id_audit"
	ParameterDomainNameServers   = "/superwerker/domain_name_servers"
	ParameterRootMailPassword    = "/superwerker/rootmail_password"
	ParameterPasswordResetPrefix = "/superwerker/rootmail/pw_reset_link/"
	// ParameterAccountIDPrefix is followed by the lower-cased account name without spaces.
	ParameterAccountIDPrefix = "/superwerker/account_id_"

	ParameterControlTowerVersion            = "/superwerker/controltower/version"
	ParameterControlTowerRegions            = "/superwerker/controltower/regions"
	ParameterControlTowerKMSKey             = "/superwerker/controltower/kms_key"
	ParameterControlTowerSecurityOU         = "/superwerker/controltower/security_ou"
	ParameterControlTowerSandboxOU          = "/superwerker/controltower/sandbox_ou"
	ParameterControlTowerLoggingRetention   = "/superwerker/controltower/bucket_retention_logging"
	ParameterControlTowerAccessLogRetention = "/superwerker/controltower/bucket_retention_access_logging"
)

// Landing zone settings written once during preparation. They cannot change after the
// first installation.
const (
	DefaultControlTowerVersion    = "4.0"
	DefaultSecurityOUName         = "Security"
	DefaultSandboxOUName          = "Sandbox"
	DefaultLoggingRetentionDays   = 90
	DefaultAccessLogRetentionDays = 365
)

// DefaultControlTowerRegions are governed when no regions parameter exists.
var DefaultControlTowerRegions = []string{"eu-central-1", "eu-west-1"}
