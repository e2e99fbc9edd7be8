package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/operationalinsights/armoperationalinsights"

	"github.com/edvin/landingzone/internal/model"
)

func (b *Backend) EnsureLogWorkspace(ctx context.Context, rg, name, region string, retentionDays int32, tags model.TagSet) (string, error) {
	if retentionDays == 0 {
		retentionDays = 30
	}
	poller, err := b.workspaces.BeginCreateOrUpdate(ctx, rg, name, armoperationalinsights.Workspace{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		Properties: &armoperationalinsights.WorkspaceProperties{
			RetentionInDays: to.Ptr(retentionDays),
			SKU: &armoperationalinsights.WorkspaceSKU{
				Name: to.Ptr(armoperationalinsights.WorkspaceSKUNameEnumPerGB2018),
			},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure log workspace %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure log workspace %s: %w", name, err)
	}
	return toValue(resp.ID), nil
}

// EnsureDiagnostics routes a resource's logs and metrics to the hub
// log sink. Diagnostic settings are an extension resource, addressed
// by the target's resource URI rather than a resource group.
func (b *Backend) EnsureDiagnostics(ctx context.Context, settingName, resourceID, logSinkID string) error {
	_, err := b.diagnostics.CreateOrUpdate(ctx, resourceID, settingName, armmonitor.DiagnosticSettingsResource{
		Properties: &armmonitor.DiagnosticSettings{
			WorkspaceID: to.Ptr(logSinkID),
			Logs: []*armmonitor.LogSettings{{
				CategoryGroup: to.Ptr("allLogs"),
				Enabled:       to.Ptr(true),
			}},
			Metrics: []*armmonitor.MetricSettings{{
				Category: to.Ptr("AllMetrics"),
				Enabled:  to.Ptr(true),
			}},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("ensure diagnostics %s on %s: %w", settingName, resourceID, err)
	}
	return nil
}
