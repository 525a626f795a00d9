package helpers

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
)

// NewAzureCredential returns Azure credentials using DefaultAzureCredential
func NewAzureCredential() (*azidentity.DefaultAzureCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get Azure credentials: %w", err)
	}
	return cred, nil
}

// NewGraphClient creates a Microsoft Graph client from the given credential
func NewGraphClient(cred *azidentity.DefaultAzureCredential) (*msgraphsdk.GraphServiceClient, error) {
	graphClient, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph client: %w", err)
	}
	return graphClient, nil
}

// ListSubscriptions returns the IDs of all subscriptions visible to the caller
func ListSubscriptions(ctx context.Context, cred *azidentity.DefaultAzureCredential) ([]string, error) {
	subsClient, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}

	var subscriptionIDs []string
	pager := subsClient.NewListPager(nil)

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}

		for _, sub := range page.Value {
			if sub.SubscriptionID == nil {
				continue
			}
			subscriptionIDs = append(subscriptionIDs, *sub.SubscriptionID)
		}
	}

	return subscriptionIDs, nil
}
