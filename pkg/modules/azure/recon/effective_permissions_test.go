package recon

import (
	"testing"
)

func TestAzureEffectivePermissionsModule(t *testing.T) {
	if AzureEffectivePermissions == nil {
		t.Fatal("AzureEffectivePermissions module is nil")
	}

	metadata := AzureEffectivePermissions.Metadata()
	if metadata == nil {
		t.Fatal("Module metadata is nil")
	}

	props := metadata.Properties()
	if props["id"] != "effective-permissions" {
		t.Errorf("Expected id 'effective-permissions', got %v", props["id"])
	}

	if props["platform"] != "azure" {
		t.Errorf("Expected platform 'azure', got %v", props["platform"])
	}

	if props["opsec_level"] != "stealth" {
		t.Errorf("Expected opsec_level 'stealth', got %v", props["opsec_level"])
	}

	authors, ok := props["authors"].([]string)
	if !ok || len(authors) == 0 {
		t.Error("Module authors not properly set")
	}
}
