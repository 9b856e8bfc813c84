// Package ociauth picks the OCI configuration provider for the environment
// the function runs in.
package ociauth

import (
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/common/auth"

	"etl-state-mover-oci-serverless/pkg/config"
)

// Provider returns the provider for mode. Functions use resource principals,
// compute instances use instance principals and local runs use ~/.oci/config.
func Provider(mode string) (common.ConfigurationProvider, error) {
	switch mode {
	case config.AuthResourcePrincipal:
		return auth.ResourcePrincipalConfigurationProvider()
	case config.AuthInstancePrincipal:
		return auth.InstancePrincipalConfigurationProvider()
	case config.AuthConfigFile:
		return common.DefaultConfigProvider(), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
