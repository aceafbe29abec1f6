package templates

import "fmt"

// RenderSchedulerBackoffAlertEmail generates the HTML for the on-call notice
// sent once a scheduler lock instance has failed to complete a tick enough
// consecutive times to trip the backoff alert threshold.
func RenderSchedulerBackoffAlertEmail(instanceID string, consecutiveErrors int, backoffUntil, lastError string) string {
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>CourtWatch Ingest - Scraper Backoff</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0a0a0f; }
    .container { max-width: 600px; margin: 0 auto; background-color: #12121f; }
    .header { background: linear-gradient(135deg, #ef4444 0%%, #b91c1c 100%%); padding: 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 22px; font-weight: 700; }
    .content { padding: 30px; color: #e5e7eb; }
    .info-grid { display: table; width: 100%%; margin: 20px 0; }
    .info-row { display: table-row; }
    .info-label { display: table-cell; padding: 10px 15px 10px 0; color: #9ca3af; font-size: 14px; width: 40%%; }
    .info-value { display: table-cell; padding: 10px 0; color: #fff; font-size: 14px; font-weight: 600; }
    .error-box { background: rgba(239, 68, 68, 0.1); border: 1px solid rgba(239, 68, 68, 0.3); border-radius: 8px; padding: 15px; margin: 20px 0; }
    .error-box p { margin: 0; color: #fca5a5; font-size: 13px; font-family: monospace; word-break: break-all; }
    .footer { padding: 20px 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>&#9888;&#65039; Scraper Entering Backoff</h1>
    </div>
    <div class="content">
      <p>The ingest scheduler has failed to complete a tick enough times in a row to trip the backoff alert threshold.</p>

      <div class="info-grid">
        <div class="info-row">
          <div class="info-label">Instance:</div>
          <div class="info-value">%s</div>
        </div>
        <div class="info-row">
          <div class="info-label">Consecutive errors:</div>
          <div class="info-value">%d</div>
        </div>
        <div class="info-row">
          <div class="info-label">Backoff until:</div>
          <div class="info-value">%s</div>
        </div>
      </div>

      <div class="error-box">
        <p>%s</p>
      </div>

      <p style="margin-top: 30px; color: #9ca3af; font-size: 14px;">No further ticks will run until the backoff window elapses. If this repeats, check whether the courthouse board changed its markup or the upstream XHR endpoint.</p>
    </div>
    <div class="footer">
      <p>CourtWatch Ingest &mdash; automated operations alert</p>
    </div>
  </div>
</body>
</html>`, instanceID, consecutiveErrors, backoffUntil, lastError)
}

// RenderSchedulerRecoveryAlertEmail generates the HTML sent once a scheduler
// instance completes a tick successfully after having been in backoff.
func RenderSchedulerRecoveryAlertEmail(instanceID string, previousConsecutiveErrors int) string {
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>CourtWatch Ingest - Scraper Recovered</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0a0a0f; }
    .container { max-width: 600px; margin: 0 auto; background-color: #12121f; }
    .header { background: linear-gradient(135deg, #22c55e 0%%, #16a34a 100%%); padding: 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 22px; font-weight: 700; }
    .content { padding: 30px; color: #e5e7eb; }
    .success-box { background: rgba(34, 197, 94, 0.1); border: 1px solid rgba(34, 197, 94, 0.3); border-radius: 8px; padding: 15px; margin: 20px 0; }
    .success-box p { margin: 0; color: #86efac; font-size: 14px; }
    .footer { padding: 20px 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>&#9989; Scraper Recovered</h1>
    </div>
    <div class="content">
      <p>Instance <strong>%s</strong> completed a tick successfully after %d consecutive failure(s). Backoff has been cleared and normal scheduling has resumed.</p>

      <div class="success-box">
        <p>No action needed unless failures resume.</p>
      </div>
    </div>
    <div class="footer">
      <p>CourtWatch Ingest &mdash; automated operations alert</p>
    </div>
  </div>
</body>
</html>`, instanceID, previousConsecutiveErrors)
}
