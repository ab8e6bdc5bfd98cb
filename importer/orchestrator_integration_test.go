package importer_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/importer"
	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
)

func TestImportCycleEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "production_test")

	storage := t.TempDir()
	t.Setenv("IMPORT_STORAGE_DIR", storage)

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	usage := func(order string, units, glazing int) []byte {
		var b strings.Builder
		fmt.Fprintf(&b, "KOPF;%s;Mustermann GmbH\n", order)
		for i := 1; i <= units; i++ {
			fmt.Fprintf(&b, "POS;%d;Fenster;1200;1400;1\n", i)
		}
		for i := 1; i <= glazing; i++ {
			fmt.Fprintf(&b, "GLAS;%d;Float 4mm;560;1300;2\n", i)
		}
		return []byte(b.String())
	}

	// First upload: no conflict, plain approval creates the order.
	up1, err := importer.UploadFile(ctx, "1001.txt", usage("1001", 2, 3), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	out1, err := importer.ApproveImport(ctx, up1.Record.ID, "", false)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if out1.Result == nil || !out1.Result.Created || out1.Result.OrderNumber != "1001" {
		t.Fatalf("unexpected result: %+v", out1.Result)
	}
	order, err := models.GetOrderByNumber(db, "1001")
	if err != nil || order == nil {
		t.Fatalf("persisted order missing: %v", err)
	}
	if order.UnitCount != 2 || order.GlazingCount != 3 {
		t.Fatalf("aggregates wrong: %d/%d", order.UnitCount, order.GlazingCount)
	}

	// Variant with equal counts: preview shows replace_base, approval
	// auto-resolves and the base is replaced in place.
	up2, err := importer.UploadFile(ctx, "1001-a.txt", usage("1001-a", 2, 3), "")
	if err != nil {
		t.Fatalf("upload variant: %v", err)
	}
	preview, err := importer.GetPreview(ctx, up2.Record.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.ConflictInfo == nil || preview.ConflictInfo.Suggestion != models.SuggestionReplaceBase {
		t.Fatalf("expected replace_base suggestion, got %+v", preview.ConflictInfo)
	}
	out2, err := importer.ApproveImport(ctx, up2.Record.ID, "", false)
	if err != nil {
		t.Fatalf("approve variant: %v", err)
	}
	if out2.Result.OrderNumber != "1001-a" || out2.Result.ReplacedOrderNumber != "1001" {
		t.Fatalf("unexpected replace result: %+v", out2.Result)
	}
	if gone, _ := models.GetOrderByNumber(db, "1001"); gone != nil {
		t.Fatal("base order should no longer exist under its old number")
	}

	// Variant with differing counts: approval without a decision must fail
	// with a validation error and leave the record pending.
	up3, err := importer.UploadFile(ctx, "1001-b.txt", usage("1001-b", 5, 3), "")
	if err != nil {
		t.Fatalf("upload conflicting variant: %v", err)
	}
	_, err = importer.ApproveImport(ctx, up3.Record.ID, "", false)
	ve, ok := utils.IsValidation(err)
	if !ok || ve.Code != "conflict_requires_decision" {
		t.Fatalf("expected conflict_requires_decision, got %v", err)
	}
	rec3, _ := models.GetImportRecord(db, up3.Record.ID)
	if rec3.Status != models.ImportStatusPending {
		t.Fatalf("record must stay pending after refused approval, got %s", rec3.Status)
	}

	// Cancelling the pending conflict rejects the record without writes.
	cancelled, err := importer.ProcessWithResolution(ctx, up3.Record.ID, importer.Resolution{Action: models.ActionCancel})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelled.Cancelled {
		t.Fatal("expected cancelled outcome")
	}
	rec3, _ = models.GetImportRecord(db, up3.Record.ID)
	if rec3.Status != models.ImportStatusRejected {
		t.Fatalf("expected rejected, got %s", rec3.Status)
	}

	// Deleting a completed import cascades to its order.
	if err := importer.DeleteImport(ctx, up2.Record.ID); err != nil {
		t.Fatalf("delete import: %v", err)
	}
	if gone, _ := models.GetOrderByNumber(db, "1001-a"); gone != nil {
		t.Fatal("order should be gone after import deletion")
	}
}

func TestFolderImportEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "production_test")

	root := t.TempDir()
	t.Setenv("IMPORT_ROOT", root)
	t.Setenv("IMPORT_STORAGE_DIR", filepath.Join(root, "storage"))
	t.Setenv("IMPORT_ARCHIVE_DIR", filepath.Join(root, "archive"))

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	folder := filepath.Join(root, "KW35_2026-08-31")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile := func(name, content string) {
		if err := os.WriteFile(filepath.Join(folder, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("2001.txt", "KOPF;2001;Kunde A\nPOS;1;Fenster;1000;1200;1\n")
	writeFile("2002.txt", "KOPF;2002;Kunde B\nPOS;1;Tuer;900;2100;1\nGLAS;1;VSG 8mm;800;2000;1\n")
	writeFile("broken.txt", "KOPF;2003;Kunde C\nPOS;1;kaputt;abc;def;1\n")
	writeFile("preise2004.txt", "PREIS;2004\nART-77;abc\n")

	batch, err := importer.ImportFromFolder(ctx, folder, "tester")
	if err != nil {
		t.Fatalf("folder import: %v", err)
	}
	if batch.Summary.Succeeded != 2 || batch.Summary.Failed != 2 {
		t.Fatalf("unexpected summary: %+v", batch.Summary)
	}
	// A price document that fails to parse is a failed file, never a success.
	for _, fr := range batch.Results {
		if fr.FileName != "preise2004.txt" {
			continue
		}
		if fr.Status != models.BatchFileError {
			t.Fatalf("unparseable price document reported as %s (%s)", fr.Status, fr.Reason)
		}
	}
	if batch.ArchivedTo == "" {
		t.Fatal("expected folder to be archived")
	}
	if _, err := os.Stat(folder); !os.IsNotExist(err) {
		t.Fatal("source folder should have been moved away")
	}

	delivery, err := models.GetDelivery(db, batch.DeliveryId)
	if err != nil {
		t.Fatalf("delivery missing: %v", err)
	}
	if delivery.DeliveryDate == nil || delivery.DeliveryDate.Format("2006-01-02") != "2026-08-31" {
		t.Fatalf("delivery date not extracted: %v", delivery.DeliveryDate)
	}

	for _, number := range []string{"2001", "2002"} {
		order, oerr := models.GetOrderByNumber(db, number)
		if oerr != nil || order == nil {
			t.Fatalf("order %s missing: %v", number, oerr)
		}
		if order.DeliveryId == nil || *order.DeliveryId != batch.DeliveryId {
			t.Fatalf("order %s not linked to delivery", number)
		}
	}

	// The lock must be gone after the batch, success or not.
	if lock, _ := models.CheckFolderLock(db, filepath.Clean(folder)); lock != nil {
		t.Fatal("folder lock should be released after the batch")
	}
}

// A re-import that dies halfway through writing the new dependents must leave
// the previous state of the order untouched: the apply transaction either
// lands completely or not at all.
func TestImportApplyRollsBackAsOneUnit(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "production_test")

	storage := t.TempDir()
	t.Setenv("IMPORT_STORAGE_DIR", storage)

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	first := "KOPF;3001;Bauelemente Nord\n" +
		"POS;1;Fenster;1200;1400;1\n" +
		"POS;2;Fenster;800;1400;1\n" +
		"MAT;P-8845;Rahmenprofil 70mm;m;24.5\n"
	up1, err := importer.UploadFile(ctx, "3001.txt", []byte(first), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := importer.ApproveImport(ctx, up1.Record.ID, "", false); err != nil {
		t.Fatalf("approve: %v", err)
	}
	order, err := models.GetOrderByNumber(db, "3001")
	if err != nil || order == nil {
		t.Fatalf("order missing: %v", err)
	}
	if order.UnitCount != 2 {
		t.Fatalf("unit count wrong: %d", order.UnitCount)
	}

	// Same identifier again, more units, but one MAT article code longer than
	// the column allows. The insert fails after the old dependents were
	// already deleted inside the transaction.
	oversized := strings.Repeat("X", 100)
	second := "KOPF;3001;Bauelemente Nord\n" +
		"POS;1;Fenster;1200;1400;1\n" +
		"POS;2;Fenster;800;1400;1\n" +
		"POS;3;Fenster;800;1400;1\n" +
		"POS;4;Fenster;800;1400;1\n" +
		"POS;5;Fenster;800;1400;1\n" +
		"MAT;" + oversized + ";Rahmenprofil 70mm;m;24.5\n"
	up2, err := importer.UploadFile(ctx, "3001_neu.txt", []byte(second), "")
	if err != nil {
		t.Fatalf("upload second: %v", err)
	}
	if _, err := importer.ApproveImport(ctx, up2.Record.ID, "", false); err == nil {
		t.Fatal("expected the re-import to fail")
	}

	rec, err := models.GetImportRecord(db, up2.Record.ID)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Status != models.ImportStatusError {
		t.Fatalf("expected error status, got %s", rec.Status)
	}

	// The order must still carry the first import's full graph.
	order, err = models.GetOrderByNumber(db, "3001")
	if err != nil || order == nil {
		t.Fatalf("order missing after failed re-import: %v", err)
	}
	if order.UnitCount != 2 {
		t.Fatalf("aggregates changed despite rollback: %d units", order.UnitCount)
	}
	var units []models.ManufacturedUnit
	if err := db.Where("order_id = ?", order.ID).Find(&units).Error; err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 surviving units, got %d", len(units))
	}
	var materials []models.MaterialRequirement
	if err := db.Where("order_id = ?", order.ID).Find(&materials).Error; err != nil {
		t.Fatal(err)
	}
	if len(materials) != 1 || materials[0].ArticleCode != "P-8845" {
		t.Fatalf("material requirements not restored: %+v", materials)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("production-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=production_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
